package metadata

type RenderCommandOp int

const (
	RC_NOP RenderCommandOp = iota
	RC_DRAW_VIEW_3D
	RC_DRAW_VIEW_GUI
	RC_COPY_RENDER
)

func (op RenderCommandOp) String() string {
	switch op {
	case RC_NOP:
		return "nop"
	case RC_DRAW_VIEW_3D:
		return "draw-view-3d"
	case RC_DRAW_VIEW_GUI:
		return "draw-view-gui"
	case RC_COPY_RENDER:
		return "copy-render"
	}
	return "unknown"
}

/**
 * @brief A command queued by the frontend for the backend to execute.
 */
type RenderCommand struct {
	Op      RenderCommandOp
	ViewDef *ViewDef

	// Copy render parameters.
	Image               *RenderImage
	X, Y                int32
	ImageWidth          int32
	ImageHeight         int32
	ClearColorAfterCopy bool
}
