package store

// lineRange is the [start, end) byte range of one record in the JSONL file,
// end including the trailing newline.
type lineRange struct {
	start int64
	end   int64
}

// fileIndex keeps in-memory byte-offset bookmarks per record so Record(n)
// is a single ReadAt.
type fileIndex struct {
	ranges  []lineRange
	summary Summary
}

func newFileIndex() *fileIndex {
	return &fileIndex{}
}

// onAppend updates the index when a record line has been written at
// lineOffset with lineLen bytes.
func (idx *fileIndex) onAppend(rec Record, lineOffset, lineLen int64) {
	idx.ranges = append(idx.ranges, lineRange{start: lineOffset, end: lineOffset + lineLen})
	idx.summary.add(rec)
}
