package engine

import "strings"

// KeyEvent is a key press forwarded by the host UI.
type KeyEvent struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Shift bool
	// InTextInput is set while focus is in a text field; editing shortcuts
	// are left to the field then.
	InTextInput bool
}

func (k KeyEvent) command() bool { return k.Ctrl || k.Meta }

// Action names what HandleKey did.
type Action string

const (
	ActionNone        Action = ""
	ActionDelete      Action = "delete"
	ActionCopy        Action = "copy"
	ActionPaste       Action = "paste"
	ActionUndo        Action = "undo"
	ActionRedo        Action = "redo"
	ActionDeselectAll Action = "deselectAll"
)

// HandleKey applies the editor shortcuts: Delete/Backspace delete the
// selection, Ctrl/Cmd+C and +V copy and paste, Ctrl/Cmd+Z undoes,
// Ctrl/Cmd+Shift+Z and Ctrl/Cmd+Y redo, Escape clears the selection.
func (e *Engine) HandleKey(k KeyEvent) (Action, error) {
	if k.InTextInput {
		return ActionNone, nil
	}
	key := strings.ToLower(k.Key)

	switch {
	case key == "escape":
		e.DeselectAll()
		return ActionDeselectAll, nil
	case (key == "delete" || key == "backspace") && !k.command():
		return ActionDelete, e.DeleteSelected()
	case !k.command():
		return ActionNone, nil
	case key == "c":
		e.Copy()
		return ActionCopy, nil
	case key == "v":
		_, err := e.Paste()
		return ActionPaste, err
	case key == "z" && k.Shift, key == "y":
		_, err := e.Redo()
		return ActionRedo, err
	case key == "z":
		_, err := e.Undo()
		return ActionUndo, err
	}
	return ActionNone, nil
}
