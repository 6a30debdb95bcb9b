// Package textfs writes pass-2 output as tab-separated part files, one
// directory per named stream:
//
//	<dir>/<stream>/part-r-00000
//
// Score lines are "ngram\tvalue", contingency lines are
// "ngram\tK11\tK12\tK21\tK22" and unigram lines are "unigram\tfrequency".
package textfs

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/hack-pad/hackpadfs"

	"github.com/cognicore/colloc/pkg/colloc/assoc"
	"github.com/cognicore/colloc/pkg/colloc/score"
)

// PartName returns the file name of a reduce partition.
func PartName(partition int) string {
	return fmt.Sprintf("part-r-%05d", partition)
}

// Sink buffers the streams of one partition and writes them on Close.
// Not safe for concurrent use.
type Sink struct {
	fs        hackpadfs.FS
	dir       string
	partition int
	streams   map[string]*strings.Builder
}

// NewSink creates a sink for a partition. Streams named up front get a
// part file even when the partition writes nothing to them.
func NewSink(fs hackpadfs.FS, dir string, partition int, streams ...string) *Sink {
	s := &Sink{
		fs:        fs,
		dir:       dir,
		partition: partition,
		streams:   make(map[string]*strings.Builder),
	}
	for _, name := range streams {
		s.stream(name)
	}
	return s
}

func (s *Sink) stream(name string) *strings.Builder {
	b, ok := s.streams[name]
	if !ok {
		b = &strings.Builder{}
		s.streams[name] = b
	}
	return b
}

// WriteScore implements score.Sink.
func (s *Sink) WriteScore(metric, text string, value float64) error {
	b := s.stream(metric)
	b.WriteString(text)
	b.WriteByte('\t')
	b.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	b.WriteByte('\n')
	return nil
}

// WriteContingency implements score.Sink.
func (s *Sink) WriteContingency(text string, t assoc.Table) error {
	b := s.stream(score.StreamContingency)
	b.WriteString(text)
	b.WriteByte('\t')
	b.WriteString(t.String())
	b.WriteByte('\n')
	return nil
}

// WriteUnigram implements score.Sink.
func (s *Sink) WriteUnigram(text string, frequency int64) error {
	b := s.stream(score.StreamUnigram)
	b.WriteString(text)
	b.WriteByte('\t')
	b.WriteString(strconv.FormatInt(frequency, 10))
	b.WriteByte('\n')
	return nil
}

// Close writes one part file per stream.
func (s *Sink) Close() error {
	names := make([]string, 0, len(s.streams))
	for name := range s.streams {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dir := path.Join(s.dir, name)
		if err := hackpadfs.MkdirAll(s.fs, dir, 0o755); err != nil {
			return fmt.Errorf("failed to create stream dir %s: %w", dir, err)
		}
		file := path.Join(dir, PartName(s.partition))
		if err := hackpadfs.WriteFullFile(s.fs, file, []byte(s.streams[name].String()), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file, err)
		}
	}
	return nil
}

// ReadStream concatenates every part file of a stream in partition order.
func ReadStream(fs hackpadfs.FS, dir, stream string) ([]byte, error) {
	streamDir := path.Join(dir, stream)
	entries, err := hackpadfs.ReadDir(fs, streamDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "part-r-") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []byte
	for _, name := range names {
		data, err := hackpadfs.ReadFile(fs, path.Join(streamDir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}
