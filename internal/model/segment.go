package model

// SegmentStatus represents the fetch state of a single manifest segment
type SegmentStatus string

const (
	SegmentPending  SegmentStatus = "pending"
	SegmentFetching SegmentStatus = "fetching"
	SegmentFetched  SegmentStatus = "fetched"
	SegmentFailed   SegmentStatus = "failed"
)

// SegmentDescriptor represents one manifest entry. Index defines final ordering.
type SegmentDescriptor struct {
	Index     int
	URI       string // absolute, resolved against the manifest base
	Duration  float64
	LocalPath string // assigned before fetch
	Status    SegmentStatus
	Attempts  int
	Size      int64 // bytes written once fetched
}

// PendingSegments returns segments that still need fetching, in index order
func PendingSegments(segments []*SegmentDescriptor) []*SegmentDescriptor {
	var pending []*SegmentDescriptor
	for _, seg := range segments {
		if seg.Status != SegmentFetched {
			pending = append(pending, seg)
		}
	}
	return pending
}

// CountFetched returns the number of fetched segments and their total size
func CountFetched(segments []*SegmentDescriptor) (int, int64) {
	count := 0
	var size int64
	for _, seg := range segments {
		if seg.Status == SegmentFetched {
			count++
			size += seg.Size
		}
	}
	return count, size
}
