package types

import "fmt"

// ZoneList is the compressed polygon / polyhedron connectivity of one domain.
// ShapeCount and ShapeSize are parallel and indexed by shape type run; the
// nodes of every zone are stored back to back in NodeList.
type ZoneList struct {
	NDims      int
	ShapeCount []int
	ShapeSize  []int
	NodeList   []int
	Origin     int
	// MinIndex..MaxIndex (inclusive) is the owned, non ghost zone range
	MinIndex, MaxIndex int
}

// NewZoneList builds a zone list with every zone owned.
func NewZoneList(ndims int, shapeCount, shapeSize, nodeList []int) ZoneList {
	zl := ZoneList{
		NDims:      ndims,
		ShapeCount: shapeCount,
		ShapeSize:  shapeSize,
		NodeList:   nodeList,
	}
	zl.MaxIndex = zl.NumZones() - 1
	return zl
}

// NumZones is the total zone count implied by the shape runs, ghosts included
func (zl ZoneList) NumZones() int {
	return Sum(zl.ShapeCount)
}

// ImpliedNodeListLength is sum(ShapeCount[i]*ShapeSize[i])
func (zl ZoneList) ImpliedNodeListLength() (n int) {
	for i := range zl.ShapeCount {
		n += zl.ShapeCount[i] * zl.ShapeSize[i]
	}
	return
}

// NumOwned returns the number of zones inside the owned range
func (zl ZoneList) NumOwned() int {
	lo, hi := zl.MinIndex, zl.MaxIndex
	if lo < 0 {
		lo = 0
	}
	if nz := zl.NumZones(); hi > nz-1 {
		hi = nz - 1
	}
	if lo > hi {
		return 0
	}
	return hi - lo + 1
}

// Owned reports whether zone index z is a real (non ghost) zone
func (zl ZoneList) Owned(z int) bool {
	return z >= zl.MinIndex && z <= zl.MaxIndex
}

// CheckShapes checks the shape runs pair up and none is negative
func (zl ZoneList) CheckShapes() error {
	if len(zl.ShapeCount) != len(zl.ShapeSize) {
		return fmt.Errorf("zonelist has %d shape counts but %d shape sizes",
			len(zl.ShapeCount), len(zl.ShapeSize))
	}
	for i := range zl.ShapeCount {
		if zl.ShapeCount[i] < 0 || zl.ShapeSize[i] < 0 {
			return fmt.Errorf("zonelist shape run %d has negative count or size", i)
		}
	}
	return nil
}

// Validate checks the structural invariants of the zone list against the
// declared zone count. A negative zoneCount skips that check.
func (zl ZoneList) Validate(zoneCount int) error {
	if err := zl.CheckShapes(); err != nil {
		return err
	}
	if zoneCount >= 0 && zl.NumZones() != zoneCount {
		return fmt.Errorf("zonelist describes %d zones, mesh declares %d",
			zl.NumZones(), zoneCount)
	}
	if implied := zl.ImpliedNodeListLength(); implied != len(zl.NodeList) {
		return fmt.Errorf("zonelist node list has %d entries, shapes imply %d",
			len(zl.NodeList), implied)
	}
	return nil
}

// ForEachZone walks the shape runs calling fn with the zone index and its
// vertex slice. It stops early and returns the error fn returns, or an error
// if the node list is shorter than the shapes require.
func (zl ZoneList) ForEachZone(fn func(zone int, nodes []int) error) error {
	var (
		zone, cursor int
	)
	for run, count := range zl.ShapeCount {
		size := zl.ShapeSize[run]
		for i := 0; i < count; i++ {
			if cursor+size > len(zl.NodeList) {
				return fmt.Errorf("zone %d needs node list entries [%d,%d), only %d present",
					zone, cursor, cursor+size, len(zl.NodeList))
			}
			if err := fn(zone, zl.NodeList[cursor:cursor+size]); err != nil {
				return err
			}
			cursor += size
			zone++
		}
	}
	return nil
}
