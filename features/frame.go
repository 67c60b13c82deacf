package features

import (
	"github.com/YuminosukeSato/bikeshare/dataset"
	"github.com/YuminosukeSato/bikeshare/pipeline"
)

// ToFrame lays the rows out as pipeline columns. Missing coordinates become
// the pipeline null marker.
func ToFrame(rows *dataset.Table[FeatureRow]) (*pipeline.Frame, error) {
	n := rows.Count()
	label := make([]float64, n)
	member := make([]string, n)
	lat := make([]float64, n)
	long := make([]float64, n)
	cyc := make([][]float64, len(CyclicalColumns))
	for j := range cyc {
		cyc[j] = make([]float64, n)
	}

	i := 0
	for r := range rows.All() {
		label[i] = r.Label
		member[i] = r.MemberType
		lat[i] = nullable(r.StartStationLat.Float64, r.StartStationLat.Valid)
		long[i] = nullable(r.StartStationLong.Float64, r.StartStationLong.Valid)
		for j, v := range r.Cyclical.Values() {
			cyc[j][i] = v
		}
		i++
	}

	f := pipeline.NewFrame(n)
	var err error
	if f, err = f.WithFloats(LabelColumn, label); err != nil {
		return nil, err
	}
	if f, err = f.WithStrings(MemberTypeColumn, member); err != nil {
		return nil, err
	}
	if f, err = f.WithFloats(LatitudeColumn, lat); err != nil {
		return nil, err
	}
	if f, err = f.WithFloats(LongitudeColumn, long); err != nil {
		return nil, err
	}
	for j, name := range CyclicalColumns {
		if f, err = f.WithFloats(name, cyc[j]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func nullable(v float64, valid bool) float64 {
	if !valid {
		return pipeline.NullValue()
	}
	return v
}
