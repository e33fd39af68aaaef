package template

// MergeContexts combines several dependency contexts into one, later
// contexts overriding earlier ones on key collision. Used to let a
// service's activation arguments reference its own properties alongside
// its declared dependencies' without a separate lookup path.
func MergeContexts(contexts ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, ctx := range contexts {
		for key, value := range ctx {
			result[key] = value
		}
	}
	return result
}
