package document

import "fmt"

// Get returns the object with id.
func (s *Scene) Get(id string) (Object, bool) {
	obj, ok := s.Objects[id]
	return obj, ok
}

// Zone returns the zone with id.
func (s *Scene) Zone(id string) (Zone, bool) {
	for _, z := range s.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// ContainerChildren returns the ordered ids of a container. The empty id is
// the scene root.
func (s *Scene) ContainerChildren(containerID string) []string {
	if containerID == "" {
		return s.Children
	}
	return s.Objects[containerID].Children
}

func (s *Scene) setContainerChildren(containerID string, ids []string) {
	if containerID == "" {
		s.Children = ids
		return
	}
	c := s.Objects[containerID]
	c.Children = ids
	s.Objects[containerID] = c
}

// IndexOf returns the container id and position of id.
func (s *Scene) IndexOf(id string) (string, int, bool) {
	obj, ok := s.Objects[id]
	if !ok {
		return "", -1, false
	}
	parent := obj.ParentID()
	for i, childID := range s.ContainerChildren(parent) {
		if childID == id {
			return parent, i, true
		}
	}
	return parent, -1, false
}

// Insert stores obj in the arena and places it in containerID at index.
// An out of range index appends (topmost).
func (s *Scene) Insert(obj Object, containerID string, index int) error {
	if containerID != "" {
		c, ok := s.Objects[containerID]
		if !ok || c.Type != ObjectTypeGroup {
			return fmt.Errorf("container %s: %w", containerID, ErrObjectNotFound)
		}
		obj.Parent = &containerID
	} else {
		obj.Parent = nil
	}
	s.Objects[obj.ID] = obj

	children := s.ContainerChildren(containerID)
	if index >= 0 && index <= len(children) {
		next := make([]string, 0, len(children)+1)
		next = append(next, children[:index]...)
		next = append(next, obj.ID)
		next = append(next, children[index:]...)
		s.setContainerChildren(containerID, next)
	} else {
		s.setContainerChildren(containerID, append(append([]string{}, children...), obj.ID))
	}
	return nil
}

// Detach removes id from its container's order, leaving it in the arena.
// It returns the former container and index.
func (s *Scene) Detach(id string) (string, int, bool) {
	parent, idx, ok := s.IndexOf(id)
	if !ok || idx < 0 {
		return "", -1, false
	}
	children := s.ContainerChildren(parent)
	next := make([]string, 0, len(children)-1)
	next = append(next, children[:idx]...)
	next = append(next, children[idx+1:]...)
	s.setContainerChildren(parent, next)
	return parent, idx, true
}

// Remove detaches id and destroys it together with its descendants.
// Unknown ids are ignored.
func (s *Scene) Remove(id string) bool {
	if _, ok := s.Objects[id]; !ok {
		return false
	}
	s.Detach(id)
	for _, d := range s.Descendants(id) {
		delete(s.Objects, d)
	}
	delete(s.Objects, id)
	return true
}

// Move repositions id within its container. Out of range indices clamp.
func (s *Scene) Move(id string, index int) bool {
	parent, idx, ok := s.IndexOf(id)
	if !ok || idx < 0 {
		return false
	}
	children := s.ContainerChildren(parent)
	index = max(0, min(index, len(children)-1))
	if index == idx {
		return true
	}
	next := make([]string, 0, len(children))
	next = append(next, children[:idx]...)
	next = append(next, children[idx+1:]...)
	next = append(next[:index], append([]string{id}, next[index:]...)...)
	s.setContainerChildren(parent, next)
	return true
}

// Descendants returns every id owned transitively by id.
func (s *Scene) Descendants(id string) []string {
	var out []string
	for _, childID := range s.Objects[id].Children {
		out = append(out, childID)
		out = append(out, s.Descendants(childID)...)
	}
	return out
}

// Walk visits objects in painter's order (back to front), depth first.
func (s *Scene) Walk(fn func(obj Object, depth int)) {
	var visit func(ids []string, depth int)
	visit = func(ids []string, depth int) {
		for _, id := range ids {
			obj, ok := s.Objects[id]
			if !ok {
				continue
			}
			fn(obj, depth)
			if obj.Type == ObjectTypeGroup {
				visit(obj.Children, depth+1)
			}
		}
	}
	visit(s.Children, 0)
}

// TopLevel returns the top-level objects in z-order.
func (s *Scene) TopLevel() []Object {
	out := make([]Object, 0, len(s.Children))
	for _, id := range s.Children {
		if obj, ok := s.Objects[id]; ok {
			out = append(out, obj.Clone())
		}
	}
	return out
}

// CountInZone counts objects assigned to zoneID, ignoring excludeID.
func (s *Scene) CountInZone(zoneID, excludeID string) int {
	n := 0
	for id, obj := range s.Objects {
		if id != excludeID && obj.ZoneID == zoneID {
			n++
		}
	}
	return n
}

// Validate checks single-parent ownership: every arena object is listed in
// exactly one container, parent links agree, and groups only own leaves.
func (s *Scene) Validate() error {
	seen := make(map[string]string, len(s.Objects))
	check := func(containerID string, ids []string) error {
		for _, id := range ids {
			obj, ok := s.Objects[id]
			if !ok {
				return fmt.Errorf("%w: %s lists unknown object %s", ErrInvalidScene, containerName(containerID), id)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: object %s owned by both %s and %s", ErrInvalidScene, id, containerName(prev), containerName(containerID))
			}
			seen[id] = containerID
			if obj.ParentID() != containerID {
				return fmt.Errorf("%w: object %s parent mismatch", ErrInvalidScene, id)
			}
			if containerID != "" && obj.Type == ObjectTypeGroup {
				return fmt.Errorf("%w: nested group %s", ErrInvalidScene, id)
			}
		}
		return nil
	}

	if err := check("", s.Children); err != nil {
		return err
	}
	for id, obj := range s.Objects {
		if obj.Type != ObjectTypeGroup {
			if len(obj.Children) > 0 {
				return fmt.Errorf("%w: leaf %s has children", ErrInvalidScene, id)
			}
			continue
		}
		if err := check(id, obj.Children); err != nil {
			return err
		}
	}
	if len(seen) != len(s.Objects) {
		return fmt.Errorf("%w: %d orphaned objects", ErrInvalidScene, len(s.Objects)-len(seen))
	}
	return nil
}

func containerName(id string) string {
	if id == "" {
		return "scene"
	}
	return id
}
