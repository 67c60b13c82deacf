// Package source loads trip and station records from delimited files in an
// object store.
package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/bikeshare/dataset"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
	"github.com/YuminosukeSato/bikeshare/storage"
)

const (
	// RidesPath is the sub-path holding trip history files.
	RidesPath = "rides"
	// StationsPath is the sub-path holding station reference files.
	StationsPath = "stations"
)

// Option configures a Reader.
type Option func(*Reader)

// WithColumns overrides the header mapping.
func WithColumns(c Columns) Option {
	return func(r *Reader) { r.columns = c }
}

// WithConcurrency bounds the number of files fetched at once.
func WithConcurrency(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// Reader is the tabular source reader. It only calls List and Get.
type Reader struct {
	store       storage.Store
	columns     Columns
	concurrency int
	logger      log.Logger
}

// NewReader creates a Reader over store.
func NewReader(store storage.Store, opts ...Option) *Reader {
	r := &Reader{
		store:       store,
		columns:     DefaultColumns(),
		concurrency: 4,
		logger:      log.GetLoggerWithName("source"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadTrips loads every file under base/rides into one table.
func (r *Reader) ReadTrips(ctx context.Context, base string) (*dataset.Table[TripRecord], ReadStats, error) {
	c := r.columns
	required := []string{c.Duration, c.StartDate, c.StartStation, c.MemberType}

	var badDuration, badStation int
	rows, stats, err := readAll(ctx, r, storage.Join(base, RidesPath), required,
		func(rec []string, idx []int) (TripRecord, bool) {
			d, err := parseFloat(rec[idx[0]])
			if err != nil {
				badDuration++
				return TripRecord{}, false
			}
			// Trips without an integer station id are dropped and counted.
			id, err := parseID(rec[idx[2]])
			if err != nil {
				badStation++
				return TripRecord{}, false
			}
			return TripRecord{
				Duration:       d,
				StartDate:      strings.TrimSpace(rec[idx[1]]),
				StartStationID: id,
				MemberType:     strings.TrimSpace(rec[idx[3]]),
			}, true
		})
	if err != nil {
		return nil, stats, err
	}

	if badDuration > 0 {
		errors.Warn(errors.NewDataConversionWarning(c.Duration, badDuration, "not a number"))
	}
	if badStation > 0 {
		errors.Warn(errors.NewDataConversionWarning(c.StartStation, badStation, "not an integer station id"))
	}
	r.logger.Info("trips loaded",
		log.OperationKey, log.OperationRead,
		log.FilesKey, stats.Files,
		log.SamplesKey, stats.Rows,
		log.ExcludedKey, stats.Malformed,
	)
	return dataset.FromSlice(rows), stats, nil
}

// ReadStations loads every file under base/stations into one table.
func (r *Reader) ReadStations(ctx context.Context, base string) (*dataset.Table[StationRecord], ReadStats, error) {
	c := r.columns
	required := []string{c.StationID, c.Latitude, c.Longitude}

	rows, stats, err := readAll(ctx, r, storage.Join(base, StationsPath), required,
		func(rec []string, idx []int) (StationRecord, bool) {
			id, err := parseID(rec[idx[0]])
			if err != nil {
				return StationRecord{}, false
			}
			lat, err := parseFloat(rec[idx[1]])
			if err != nil {
				return StationRecord{}, false
			}
			long, err := parseFloat(rec[idx[2]])
			if err != nil {
				return StationRecord{}, false
			}
			return StationRecord{ID: id, Latitude: lat, Longitude: long}, true
		})
	if err != nil {
		return nil, stats, err
	}

	if stats.Malformed > 0 {
		errors.Warn(errors.NewDataConversionWarning(c.StationID, stats.Malformed, "unparseable station row"))
	}
	r.logger.Info("stations loaded",
		log.OperationKey, log.OperationRead,
		log.FilesKey, stats.Files,
		log.SamplesKey, stats.Rows,
		log.ExcludedKey, stats.Malformed,
	)
	return dataset.FromSlice(rows), stats, nil
}

// readAll fetches the files under prefix concurrently and decodes them in
// key order. decode runs on a single goroutine.
func readAll[T any](
	ctx context.Context,
	r *Reader,
	prefix string,
	required []string,
	decode func(rec []string, idx []int) (T, bool),
) ([]T, ReadStats, error) {
	start := time.Now()
	var stats ReadStats

	keys, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, stats, errors.Wrapf(err, "list %q", prefix)
	}
	keys = dataFiles(keys)
	if len(keys) == 0 {
		return nil, stats, errors.NewSourceUnavailableError(prefix)
	}
	stats.Files = len(keys)

	blobs := make([][]byte, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			data, err := r.store.Get(gctx, key)
			if err != nil {
				return errors.Wrapf(err, "read %q", key)
			}
			blobs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	var rows []T
	seen := 0
	for i, data := range blobs {
		n, err := decodeFile(data, required, func(rec []string, idx []int) {
			if row, ok := decode(rec, idx); ok {
				rows = append(rows, row)
			}
		})
		if err != nil {
			return nil, stats, errors.Wrapf(err, "parse %q", keys[i])
		}
		seen += n
	}
	stats.Rows = len(rows)
	stats.Malformed = seen - stats.Rows

	r.logger.Debug("files decoded",
		log.LocationKey, prefix,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return rows, stats, nil
}

// decodeFile parses one delimited file with a header row and calls fn for
// every record holding all required columns. It returns the number of data
// records seen, including short ones that were skipped.
func decodeFile(data []byte, required []string, fn func(rec []string, idx []int)) (int, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read header")
	}
	idx, err := columnIndex(header, required)
	if err != nil {
		return 0, err
	}
	maxIdx := 0
	for _, i := range idx {
		maxIdx = max(maxIdx, i)
	}

	seen := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return seen, errors.Wrapf(err, "read record %d", seen+1)
		}
		seen++
		if len(rec) <= maxIdx {
			continue
		}
		fn(rec, idx)
	}
	return seen, nil
}

// columnIndex resolves the position of every required header name.
func columnIndex(header, required []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := make([]int, len(required))
	for i, name := range required {
		p, ok := pos[name]
		if !ok {
			return nil, errors.NewValidationError("columns", "required header column is missing", name)
		}
		idx[i] = p
	}
	return idx, nil
}

// dataFiles drops bookkeeping objects such as _SUCCESS markers and hidden
// files.
func dataFiles(keys []string) []string {
	out := keys[:0:0]
	for _, k := range keys {
		base := storage.Base(k)
		if strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
			continue
		}
		out = append(out, k)
	}
	return out
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.NewValueError("parseFloat", "value is not finite")
	}
	return v, nil
}

// parseID accepts integers and integral floats such as "31000.0".
func parseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errors.NewValueError("parseID", "station id is not an integer")
	}
	return int(f), nil
}
