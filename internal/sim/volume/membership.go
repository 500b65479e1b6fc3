package volume

// OnOverlap is called every physics step while e overlaps the volume's region. It refreshes
// the entity's cell reference and admits it on first contact.
func (v *Volume) OnOverlap(e Entity) {
	if e == nil {
		return
	}
	if key, ok := v.WorldPosToCell(e.Position()); ok {
		e.SetCellRef(CellRef{Volume: v, Key: key})
	} else {
		e.SetCellRef(CellRef{})
	}
	if v.resident(e.ID()) >= 0 {
		return
	}
	v.residents = append(v.residents, e)
	e.SetDrag(v.cfg.Drag)
}

// OnOverlapEnd releases e when it leaves the region.
func (v *Volume) OnOverlapEnd(e Entity) {
	if e == nil {
		return
	}
	i := v.resident(e.ID())
	if i < 0 {
		return
	}
	e.SetCellRef(CellRef{})
	e.SetDrag(0)
	v.residents = append(v.residents[:i], v.residents[i+1:]...)
	v.pruneResidents()
}

func (v *Volume) resident(id string) int {
	for i, r := range v.residents {
		if r != nil && r.ID() == id {
			return i
		}
	}
	return -1
}

func (v *Volume) pruneResidents() {
	out := v.residents[:0]
	for _, r := range v.residents {
		if r == nil || !r.Alive() {
			continue
		}
		out = append(out, r)
	}
	clear(v.residents[len(out):])
	v.residents = out
}
