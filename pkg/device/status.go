package device

import "encoding/json"

// Status is a device's dynamic attribute map. Each device type uses its own
// conventional subset of keys (state, brightness, temperature, ...).
type Status map[string]any

// Clone returns a shallow copy of the map. Values are scalars by convention.
func (s Status) Clone() Status {
	if s == nil {
		return nil
	}
	out := make(Status, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns a new status holding s with every key of patch overwritten.
// Keys absent from patch keep their current value; neither input is modified.
func (s Status) Merge(patch Status) Status {
	out := make(Status, len(s)+len(patch))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Normalize round-trips the status through JSON so numbers become float64,
// matching what the database and HTTP layers produce.
func (s Status) Normalize() (Status, error) {
	if s == nil {
		return Status{}, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	out := Status{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
