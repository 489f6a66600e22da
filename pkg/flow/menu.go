package flow

import (
	"context"
	"fmt"
)

// Action runs when a menu item is selected.
type Action func(ctx context.Context) error

// Item is one selectable row, optionally leading into a SubMenu or
// running an Action (§4.11 menu-driven flow).
type Item struct {
	Label       string
	Value       string
	Description string
	Action      Action
	SubMenu     *Menu
	Enabled     bool
}

// Menu is a named, ordered set of items.
type Menu struct {
	Title  string
	Items  []Item
	Parent *Menu
}

// NewMenu returns an empty menu titled title.
func NewMenu(title string) *Menu {
	return &Menu{Title: title}
}

// AddItem appends an item running action when selected.
func (m *Menu) AddItem(label, value string, action Action) *Item {
	m.Items = append(m.Items, Item{Label: label, Value: value, Action: action, Enabled: true})
	return &m.Items[len(m.Items)-1]
}

// AddSubMenu appends an item that descends into sub when selected.
func (m *Menu) AddSubMenu(label, value string, sub *Menu) *Item {
	sub.Parent = m
	m.Items = append(m.Items, Item{Label: label, Value: value, SubMenu: sub, Enabled: true})
	return &m.Items[len(m.Items)-1]
}

// Manager drives a menu stack, presenting the current menu and
// dispatching the selected item's action or submenu. Grounded on
// Wraient-pair/pkg/ui/menu_manager.go's MenuManager/Show/Back, adapted
// to this package's CLI-only presenter (Present) since the teacher's
// rofi branch had no backing implementation in the pack.
type Manager struct {
	ctx     context.Context
	present Presenter
	stack   []*Menu
}

// Presenter renders a menu and returns the selected item's value.
type Presenter func(menu *Menu) (string, error)

// NewManager returns a Manager driven by present.
func NewManager(ctx context.Context, present Presenter) *Manager {
	return &Manager{ctx: ctx, present: present}
}

// Show presents menu once and dispatches the selection: a submenu is
// shown in turn, an action is run and its result returned. It does not
// return to the menu after an action completes.
func (mm *Manager) Show(menu *Menu) error {
	mm.stack = append(mm.stack, menu)

	selected, err := mm.present(menu)
	if err != nil {
		return fmt.Errorf("show menu %q: %w", menu.Title, err)
	}

	var item *Item
	for i := range menu.Items {
		if menu.Items[i].Value == selected {
			item = &menu.Items[i]
			break
		}
	}
	if item == nil {
		return fmt.Errorf("show menu %q: invalid selection %q", menu.Title, selected)
	}

	if item.SubMenu != nil {
		return mm.Show(item.SubMenu)
	}
	if item.Action != nil {
		return item.Action(mm.ctx)
	}
	return nil
}

// Back returns to the previous menu on the stack, if any.
func (mm *Manager) Back() error {
	if len(mm.stack) <= 1 {
		return nil
	}
	mm.stack = mm.stack[:len(mm.stack)-1]
	return mm.Show(mm.stack[len(mm.stack)-1])
}
