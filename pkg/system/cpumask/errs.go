package cpumask

import "errors"

// ErrBadMask indicates that an affinity string contained no hex digits or a
// character outside [0-9a-fA-F,]. Tasks that die mid-read surface this.
var ErrBadMask = errors.New("cpumask: malformed affinity mask")
