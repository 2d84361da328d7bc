package ingest

// Supervise runs fn with the asset and releases the asset on every exit
// path, panics included. The panic is re-raised after cleanup.
func Supervise[T any](asset *VideoAsset, fn func(*VideoAsset) (T, error)) (T, error) {
	defer asset.Release()
	return fn(asset)
}
