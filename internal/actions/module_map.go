package actions

// ModuleActions is one row of a ModuleActionMap.
type ModuleActions struct {
	Module  ModuleID
	Ident   string // stable textual identity, for diagnostics and codegen
	Actions *ActionMap
}

// ModuleActionMap is an ordered Module -> ActionMap table. Order is the scan
// visit order and drives import slot numbering in the loader, so it must be
// reproducible for identical inputs. Read-only once built.
type ModuleActionMap struct {
	entries []ModuleActions
	index   map[ModuleID]int
}

// ModuleActionMapBuilder assembles a ModuleActionMap in visit order.
type ModuleActionMapBuilder struct {
	m *ModuleActionMap
}

func NewModuleActionMapBuilder(capHint int) *ModuleActionMapBuilder {
	return &ModuleActionMapBuilder{m: &ModuleActionMap{
		entries: make([]ModuleActions, 0, capHint),
		index:   make(map[ModuleID]int, capHint),
	}}
}

// Insert records module's actions. A module already present keeps its first
// position; nil or empty maps are ignored.
func (b *ModuleActionMapBuilder) Insert(module ModuleID, ident string, actions *ActionMap) bool {
	if actions.Len() == 0 {
		return false
	}
	if _, ok := b.m.index[module]; ok {
		return false
	}
	b.m.index[module] = len(b.m.entries)
	b.m.entries = append(b.m.entries, ModuleActions{Module: module, Ident: ident, Actions: actions})
	return true
}

// Build returns the finished map; the builder must not be used afterwards.
func (b *ModuleActionMapBuilder) Build() *ModuleActionMap {
	m := b.m
	b.m = nil
	return m
}

// EmptyModuleActionMap returns a map with no entries.
func EmptyModuleActionMap() *ModuleActionMap {
	return &ModuleActionMap{index: map[ModuleID]int{}}
}

func (m *ModuleActionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Empty reports whether no module carries actions.
func (m *ModuleActionMap) Empty() bool {
	return m.Len() == 0
}

// Entries returns the rows in visit order. The slice is a copy; the
// ActionMaps are shared and must be treated as read-only.
func (m *ModuleActionMap) Entries() []ModuleActions {
	if m == nil {
		return nil
	}
	return append([]ModuleActions(nil), m.entries...)
}

// Get returns module's row.
func (m *ModuleActionMap) Get(module ModuleID) (ModuleActions, bool) {
	if m == nil {
		return ModuleActions{}, false
	}
	i, ok := m.index[module]
	if !ok {
		return ModuleActions{}, false
	}
	return m.entries[i], true
}

// ActionCount is the total number of actions across modules.
func (m *ModuleActionMap) ActionCount() int {
	total := 0
	for _, e := range m.Entries() {
		total += e.Actions.Len()
	}
	return total
}
