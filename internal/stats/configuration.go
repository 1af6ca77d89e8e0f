package stats

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultFeatures are the GPU capability flags clients report.
var DefaultFeatures = []string{
	"supports_ETC1",
	"supports_ETC2",
	"supports_PVRTC",
	"supports_ATITC",
	"supports_ASTC",
	"supports_S3TC",
	"supports_BGRA8888",
	"supports_NPOT",
	"supports_vertex_array_object",
	"supports_OES_depth24",
	"supports_OES_packed_depth_stencil",
	"supports_discard_framebuffer",
	"supports_OES_map_buffer",
}

// Value is one raw configuration value.
type Value struct {
	Raw string
}

// True reports whether the value is a case-insensitive "true".
func (v Value) True() bool {
	return strings.EqualFold(v.Raw, "true")
}

// Bool reports the value as a boolean and whether it was one.
func (v Value) Bool() (bool, bool) {
	switch strings.ToLower(v.Raw) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Int reports the value as a non-negative integer and whether it was one.
func (v Value) Int() (int, bool) {
	if v.Raw == "" {
		return 0, false
	}
	for _, c := range v.Raw {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(v.Raw)
	return n, err == nil
}

// reConfigPair matches "key: value" up to the next comma or newline. Keys may
// carry one dotted segment.
var reConfigPair = regexp.MustCompile(`(\w+\.\w+|\w+)\s*:\s*([^,\n]*)`)

// ParseConfiguration reads the loose "{key: value, ...}" blob clients send.
// Later duplicates win.
func ParseConfiguration(info string) map[string]Value {
	cleaned := strings.Trim(info, "{} \n")
	out := map[string]Value{}
	for _, m := range reConfigPair.FindAllStringSubmatch(cleaned, -1) {
		out[strings.TrimSpace(m[1])] = Value{Raw: strings.TrimSpace(m[2])}
	}
	return out
}
