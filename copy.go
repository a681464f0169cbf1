package mri

// CopyDataset creates a brand new dataset at destPath and copies every
// key and every chunk's raw on-disk bytes from src into it, in the
// same order src's own header would serialize them in -- so a chunk
// sentinel key always reaches the new dataset before its attribute
// keys, mirroring how Open's loadFromPairs replays a header.
//
// Chunk bytes are moved with GetChunkRaw/SetChunkRaw rather than a
// typed getter/setter, so the copy is exact: no widen/narrow pass runs
// even when the source and destination happen to pick different
// buffer pool slots.
func CopyDataset(src *Dataset, destPath string) (*Dataset, error) {
	dst, err := Create(destPath)
	if err != nil {
		return nil, err
	}

	for _, key := range src.IterateKeys() {
		if key == "!format" || key == "!version" {
			continue
		}
		val, err := src.GetString(key)
		if err != nil {
			dst.Destroy()
			return nil, err
		}
		if err := dst.SetString(key, val); err != nil {
			dst.Destroy()
			return nil, err
		}
	}

	for _, ch := range src.chunks {
		if ch.removed || ch.Size() == 0 {
			continue
		}
		raw, err := src.GetChunkRaw(ch.name, ch.Size(), 0)
		if err != nil {
			dst.Destroy()
			return nil, err
		}
		if err := dst.SetChunkRaw(ch.name, 0, raw); err != nil {
			dst.Destroy()
			return nil, err
		}
	}

	return dst, nil
}
