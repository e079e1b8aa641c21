package render

// RenderOptions and ViewOptions are opaque to the adapter and handed to the
// renderer as loaded from config.
type (
	RenderOptions map[string]any
	ViewOptions   map[string]any
)

// DefaultViewOptions mirrors the viewer defaults.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		"ortho":       true,
		"ticks":       10,
		"transparent": false,
		"axes":        true,
		"grid":        []bool{false, false, false},
		"timeit":      false,
		"rotateSpeed": 1,
		"up":          "Z",
		"control":     "trackball",
	}
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{}
}

// MergeView returns defaults overlaid with overrides. Neither input is
// modified.
func MergeView(defaults, overrides ViewOptions) ViewOptions {
	out := make(ViewOptions, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// MergeRender is MergeView for render options.
func MergeRender(defaults, overrides RenderOptions) RenderOptions {
	return RenderOptions(MergeView(ViewOptions(defaults), ViewOptions(overrides)))
}
