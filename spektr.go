// Package spektr is the root of an in-process OLAP evaluation engine.
// Multidimensional cells over any dataset.
//
// Usage:
//
//	import "github.com/spektr-org/spektr-olap/engine"
//
//	ds, err := helpers.LoadCSV(data, engine.Filters{})
//	s, err := engine.NewSession(ds.Cube, ds.Facts, engine.WithStore(st))
//	rows, err := s.ParseAxis("[region] * [product]")
//	result, err := s.Execute(ctx, engine.Query{Rows: rows})
//
// The evaluator package holds the context stack, set cursors and the
// expression cache. The scenario package layers what-if writebacks over
// any cell expression and allocates them to the cells below.
// All computation is local; scenarios persist through scenario/store.
package spektr
