package tileheader

// jsonMap is the generic shape encoding/json produces for a JSON object.
type jsonMap = map[string]interface{}

// getMap returns obj[key] as a jsonMap, or nil if absent or not an object.
func getMap(obj jsonMap, key string) jsonMap {
	if obj == nil {
		return nil
	}
	v, ok := obj[key].(jsonMap)
	if !ok {
		return nil
	}
	return v
}

// getString returns obj[key] as a string, or "" if absent or not a string.
func getString(obj jsonMap, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}

// firstString returns the first non-empty string among obj[keys...].
func firstString(obj jsonMap, keys ...string) string {
	for _, k := range keys {
		if s := getString(obj, k); s != "" {
			return s
		}
	}
	return ""
}

// getFloat returns obj[key] coerced to float64, and whether it was present
// and numeric. encoding/json decodes all JSON numbers as float64 into
// interface{}, so no further parsing is needed.
func getFloat(obj jsonMap, key string) (float64, bool) {
	if obj == nil {
		return 0, false
	}
	f, ok := obj[key].(float64)
	return f, ok
}

// firstFloat returns the first present numeric value among obj[keys...].
func firstFloat(obj jsonMap, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := getFloat(obj, k); ok {
			return f, true
		}
	}
	return 0, false
}
