package domain

// WithFindSkip sets the number of documents to skip in query results.
func WithFindSkip(s int64) FindOption {
	return func(fo *FindOptions) {
		fo.Skip = s
	}
}

// WithFindLimit sets the maximum number of documents to return.
func WithFindLimit(l int64) FindOption {
	return func(fo *FindOptions) {
		fo.Limit = l
	}
}

// FindOption configures query behavior through the functional options pattern.
type FindOption func(*FindOptions)

// FindOptions contains parameters for customizing query execution.
type FindOptions struct {
	// Skip specifies the number of documents to skip.
	Skip int64
	// Limit specifies the maximum number of documents to return. Zero
	// means no limit.
	Limit int64
}

// WithUpdateMulti enables updating multiple documents that match the query.
func WithUpdateMulti(m bool) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.Multi = m
	}
}

// WithUpsert enables inserting a document if no matches are found.
func WithUpsert(u bool) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.Upsert = u
	}
}

// UpdateOption configures update behavior through the functional options
// pattern.
type UpdateOption func(*UpdateOptions)

// UpdateOptions contains parameters for customizing update operations.
type UpdateOptions struct {
	// Multi enables updating multiple documents that match the query.
	Multi bool
	// Upsert enables inserting a document if no matches are found.
	Upsert bool
}

// WithRemoveMulti enables removing multiple documents that match the query.
func WithRemoveMulti(m bool) RemoveOption {
	return func(ro *RemoveOptions) {
		ro.Multi = m
	}
}

// RemoveOption configures remove behavior through the functional options
// pattern.
type RemoveOption func(*RemoveOptions)

// RemoveOptions contains parameters for customizing remove operations.
type RemoveOptions struct {
	// Multi enables removing multiple documents that match the query.
	Multi bool
}

// WithCursorDecoder sets the decoder used by [Cursor.Scan].
func WithCursorDecoder(d Decoder) CursorOption {
	return func(co *CursorOptions) {
		co.Decoder = d
	}
}

// CursorOption configures cursor behavior through the functional options
// pattern.
type CursorOption func(*CursorOptions)

// CursorOptions contains parameters for customizing cursors.
type CursorOptions struct {
	Decoder Decoder
}

// WithSnapshotCompression enables zstd framing of snapshot streams.
func WithSnapshotCompression(c bool) SnapshotOption {
	return func(so *SnapshotOptions) {
		so.Compression = c
	}
}

// WithSnapshotCorruptAlertThreshold sets the share of unreadable lines
// tolerated by import, between 0 and 1.
func WithSnapshotCorruptAlertThreshold(t float64) SnapshotOption {
	return func(so *SnapshotOptions) {
		so.CorruptAlertThreshold = t
	}
}

// SnapshotOption configures export and import through the functional options
// pattern.
type SnapshotOption func(*SnapshotOptions)

// SnapshotOptions contains parameters for snapshot export and import.
type SnapshotOptions struct {
	// Compression wraps the stream in a zstd frame.
	Compression bool
	// CorruptAlertThreshold is the share of corrupt lines import accepts.
	CorruptAlertThreshold float64
}
