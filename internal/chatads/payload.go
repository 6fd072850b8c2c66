package chatads

import "github.com/tidwall/sjson"

// BuildPayload maps a validated request onto the upstream wire shape. Keys
// follow the upstream casing (user agent travels as "userAgent"); absent
// optionals are omitted entirely, never sent as null. Values are copied
// verbatim; validation and size limits are the caller's concern.
func BuildPayload(req Request) []byte {
	payload := setField([]byte(`{}`), "message", req.Message)
	if req.IP != "" {
		payload = setField(payload, "ip", req.IP)
	}
	if req.UserAgent != "" {
		payload = setField(payload, "userAgent", req.UserAgent)
	}
	if req.Country != "" {
		payload = setField(payload, "country", req.Country)
	}
	if req.Language != "" {
		payload = setField(payload, "language", req.Language)
	}
	return payload
}

func setField(payload []byte, key, value string) []byte {
	out, err := sjson.SetBytes(payload, key, value)
	if err != nil {
		return payload
	}
	return out
}
