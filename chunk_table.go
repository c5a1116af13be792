// Table chunk: locates writes by record, answering "what does this
// record contain" queries (fetch/browse/describe/audit by record).
package vellum

func newTableChunk(expected int) *chunk {
	return newChunk(func(w Write) []byte {
		rb := recordBytes(w.Record)
		return rb[:]
	}, expected)
}

// tableRecordWrites returns every write belonging to record, in the order
// they were accepted by the segment.
func tableRecordWrites(c *chunk, record RecordID) []Write {
	rb := recordBytes(record)
	return c.seek(rb[:])
}
