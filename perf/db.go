package perf

// DB is the process-wide, immutable-after-construction analysis database.
// It owns every PathInfo/TimeBin/RouteInfo in the run and is read-only
// once ingestion finishes, so it may be shared freely across worker
// goroutines.
type DB struct {
	pool *pathIdPool

	paths map[*PathId]*PathInfo

	Rows         uint64
	TotalTraffic uint64
	ErrorCounts  map[ErrorKind]uint64

	minTime, maxTime int64
	haveTimes        bool
	BinDurationSecs  int64
}

// NewDB creates an empty DB. binDurationSecs is the fixed bin width used to
// compute TotalBins.
func NewDB(binDurationSecs int64) *DB {
	return &DB{
		pool:            newPathIdPool(),
		paths:           make(map[*PathId]*PathInfo),
		ErrorCounts:     make(map[ErrorKind]uint64),
		BinDurationSecs: binDurationSecs,
	}
}

// Insert records one (PathId, TimeBin) pair, interning the PathId into the
// DB's canonical pool and creating the path's PathInfo on first sight.
// It returns ErrRepeatedTimebin if this path already has a bin at this
// bucket.
func (db *DB) Insert(pid PathId, bin *TimeBin) (*PathId, error) {
	canonical := db.pool.intern(pid)
	info, ok := db.paths[canonical]
	if !ok {
		info = newPathInfo()
		db.paths[canonical] = info
	}
	if !info.insert(bin) {
		return canonical, ErrRepeatedTimebin
	}
	db.TotalTraffic += bin.BytesAckedSum
	if !db.haveTimes || bin.TimeBucket < db.minTime {
		db.minTime = bin.TimeBucket
	}
	if !db.haveTimes || bin.TimeBucket > db.maxTime {
		db.maxTime = bin.TimeBucket
	}
	db.haveTimes = true
	return canonical, nil
}

// RecordError increments the counter for kind, called by the ingest loop
// whenever a record is dropped.
func (db *DB) RecordError(kind ErrorKind) {
	db.ErrorCounts[kind]++
}

// PathInfo returns the PathInfo for the canonical *PathId returned by
// Insert, or nil if unknown.
func (db *DB) PathInfo(pid *PathId) *PathInfo {
	return db.paths[pid]
}

// Paths returns every canonical *PathId currently known to the DB. Order is
// unspecified; callers needing determinism should sort the result.
func (db *DB) Paths() []*PathId {
	out := make([]*PathId, 0, len(db.paths))
	for pid := range db.paths {
		out = append(out, pid)
	}
	return out
}

// TotalBins is the DB-global bin count spanned by the observed data:
// (max_time - min_time) / bin_duration across all paths. Used as the
// denominator for the Undersampled temporal classification gate so that a
// path's own missing history counts against it.
func (db *DB) TotalBins() int64 {
	if !db.haveTimes || db.BinDurationSecs <= 0 {
		return 0
	}
	return (db.maxTime-db.minTime)/db.BinDurationSecs + 1
}
