package mri

import "github.com/pghmri/mri/errs"

// standardImagesChunk is the conventional name the reference library
// reserves for the primary image volume series.
const standardImagesChunk = "images"

// isStandardImagesDims reports whether dims is one of the four axis
// orderings the "standard images" convention recognizes: a single
// spatial volume, a time series of volumes, a vector field, or a time
// series of vector fields. Each axis list is ordered fastest-varying
// first.
func isStandardImagesDims(dims string) bool {
	switch dims {
	case "xyz", "xyzt", "vxyz", "vxyzt":
		return true
	}
	return false
}

// StandardImagesDims returns the "images" chunk's dimension string and
// true if the dataset declares a chunk by that name whose dimensions
// match one of the recognized standard-images layouts.
func (ds *Dataset) StandardImagesDims() (string, bool) {
	ch, ok := ds.chunkByName[standardImagesChunk]
	if !ok || !isStandardImagesDims(ch.dims) {
		return "", false
	}
	return ch.dims, true
}

// standardImageElems is the element count of ONE 2-D image: the x*y
// plane, excluding z. z indexes the slices within a volume, not the
// image itself.
func (ds *Dataset) standardImageElems(ch *Chunk) int64 {
	return ch.extentFor('x') * ch.extentFor('y')
}

// standardSliceCount is the number of 2-D slices per volume.
func (ds *Dataset) standardSliceCount(ch *Chunk) int64 {
	return ch.extentFor('z')
}

// planeIndex computes the linear (t, v) -> volume-slot index for one
// of the four recognized standard-images layouts, before the slice
// axis is folded in.
func planeIndex(ch *Chunk, dims string, t, v int64) (int64, error) {
	switch dims {
	case "xyz":
		return 0, nil
	case "xyzt":
		if t < 0 || t >= ch.extentFor('t') {
			return 0, errs.New(errs.KindValidation, "time index %d out of range", t)
		}
		return t, nil
	case "vxyz":
		if v < 0 || v >= ch.extentFor('v') {
			return 0, errs.New(errs.KindValidation, "vector index %d out of range", v)
		}
		return v, nil
	case "vxyzt":
		if t < 0 || t >= ch.extentFor('t') || v < 0 || v >= ch.extentFor('v') {
			return 0, errs.New(errs.KindValidation, "time/vector index (%d,%d) out of range", t, v)
		}
		return t*ch.extentFor('v') + v, nil
	default:
		return 0, errs.New(errs.KindValidation, "%q is not a standard images chunk", standardImagesChunk)
	}
}

// sliceIndex computes the linear element offset, in units of one 2-D
// image, of the (t, v, slice) addressed image within the "images"
// chunk: (planeIndex(t,v) * nSlices + slice), matching the reference
// library's addressing of one x*y plane at a time rather than a whole
// x*y*z volume.
func sliceIndex(ds *Dataset, ch *Chunk, dims string, t, v, slice int64) (int64, error) {
	plane, err := planeIndex(ch, dims, t, v)
	if err != nil {
		return 0, err
	}
	nSlices := ds.standardSliceCount(ch)
	if slice < 0 || slice >= nSlices {
		return 0, errs.New(errs.KindValidation, "slice index %d out of range", slice)
	}
	return plane*nSlices + slice, nil
}

// GetImageF32 reads one (t, v, slice) 2-D image plane of the standard
// "images" chunk, converted to float32. Pass t=0/v=0 for axes the
// chunk's dimension string does not carry.
func (ds *Dataset) GetImageF32(t, v, slice int64) ([]float32, error) {
	ch, ok := ds.chunkByName[standardImagesChunk]
	if !ok {
		return nil, ds.policy.Resolve(errs.New(errs.KindValidation, "no %q chunk declared", standardImagesChunk))
	}
	dims, ok := ds.StandardImagesDims()
	if !ok {
		return nil, ds.policy.Resolve(errs.New(errs.KindValidation, "%q is not a standard images chunk", standardImagesChunk))
	}
	idx, err := sliceIndex(ds, ch, dims, t, v, slice)
	if err != nil {
		return nil, ds.policy.Resolve(err)
	}
	imgElems := ds.standardImageElems(ch)
	return ds.GetChunkF32(standardImagesChunk, imgElems, idx*imgElems)
}

// SetImageF32 writes one (t, v, slice) 2-D image plane of the standard
// "images" chunk from a float32 source, converting to the chunk's
// on-disk type.
func (ds *Dataset) SetImageF32(t, v, slice int64, data []float32) error {
	ch, ok := ds.chunkByName[standardImagesChunk]
	if !ok {
		return ds.policy.Resolve(errs.New(errs.KindValidation, "no %q chunk declared", standardImagesChunk))
	}
	dims, ok := ds.StandardImagesDims()
	if !ok {
		return ds.policy.Resolve(errs.New(errs.KindValidation, "%q is not a standard images chunk", standardImagesChunk))
	}
	idx, err := sliceIndex(ds, ch, dims, t, v, slice)
	if err != nil {
		return ds.policy.Resolve(err)
	}
	imgElems := ds.standardImageElems(ch)
	if int64(len(data)) != imgElems {
		return ds.policy.Resolve(errs.New(errs.KindValidation, "expected %d elements for one image, got %d", imgElems, len(data)))
	}
	return ds.SetChunkF32(standardImagesChunk, idx*imgElems, data)
}
