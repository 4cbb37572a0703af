package service

import (
	"github.com/clinical-assessment-engine/internal/domain"
)

// TableResolver resolves numeric keys against banded lookup tables. It holds no state and
// is safe for concurrent use.
type TableResolver struct{}

// Partition selects the partition whose keys match on every axis of the table. A table
// without axes has exactly one partition.
func (TableResolver) Partition(table *domain.LookupTable, keys map[string]string) (*domain.Partition, error) {
	if len(table.Axes) == 0 {
		if len(table.Partitions) == 0 {
			return nil, &domain.NoMatchingPartitionError{Table: table.ID, Keys: copyKeys(keys)}
		}
		return &table.Partitions[0], nil
	}
	p, ok := table.PartitionFor(keys)
	if !ok {
		return nil, &domain.NoMatchingPartitionError{Table: table.ID, Keys: copyKeys(keys)}
	}
	return p, nil
}

// Band scans the bands in ascending order and returns the first one containing key,
// together with its index within the partition. Boundary inclusivity is taken from each
// band's interval; a key outside every band is an OutOfDomainError, never clamped.
func (TableResolver) Band(table *domain.LookupTable, p *domain.Partition, source string, key float64) (*domain.LookupBand, int, error) {
	for i := range p.Bands {
		if p.Bands[i].Range.Contains(key) {
			return &p.Bands[i], i, nil
		}
	}
	return nil, -1, &domain.OutOfDomainError{Table: table.ID, Source: source, Value: key}
}

// Resolve selects the partition for keys and returns the band containing key.
func (r TableResolver) Resolve(table *domain.LookupTable, source string, key float64, keys map[string]string) (*domain.LookupBand, int, error) {
	p, err := r.Partition(table, keys)
	if err != nil {
		return nil, -1, err
	}
	return r.Band(table, p, source, key)
}

func copyKeys(keys map[string]string) map[string]string {
	out := make(map[string]string, len(keys))
	for k, v := range keys {
		out[k] = v
	}
	return out
}
