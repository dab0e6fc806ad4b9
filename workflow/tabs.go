package workflow

import "fmt"

// Tabs keeps exactly one panel visible and one nav control marked active
type Tabs struct {
	panels   []string
	controls []string

	visible string
	active  string
}

// NewTabs registers panels and the nav controls that switch between them.
// No panel is visible until the first Switch.
func NewTabs(panels, controls []string) *Tabs {
	return &Tabs{
		panels:   append([]string(nil), panels...),
		controls: append([]string(nil), controls...),
	}
}

// Switch hides every panel, shows tabID, and moves the active marker to control.
// Unregistered ids are programming errors and panic.
func (t *Tabs) Switch(control, tabID string) {
	if !contains(t.panels, tabID) {
		panic(fmt.Sprintf("workflow: unknown tab panel %q", tabID))
	}
	if !contains(t.controls, control) {
		panic(fmt.Sprintf("workflow: unknown tab control %q", control))
	}
	t.visible = tabID
	t.active = control
}

// Visible reports whether panel is shown
func (t *Tabs) Visible(panel string) bool {
	return panel != "" && panel == t.visible
}

// Active reports whether control carries the active marker
func (t *Tabs) Active(control string) bool {
	return control != "" && control == t.active
}

// Current returns the visible panel id, or "" before the first Switch
func (t *Tabs) Current() string {
	return t.visible
}

// Panels returns the registered panel ids in order
func (t *Tabs) Panels() []string {
	return append([]string(nil), t.panels...)
}

// Controls returns the registered nav control ids in order
func (t *Tabs) Controls() []string {
	return append([]string(nil), t.controls...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
