// Package simtable provides an embedded similarity table for Go.
//
// A simtable.Indexer combines three pieces:
//
//   - an append-only table mapping dense indices to (embedding, label,
//     payload) records
//   - an exact brute-force retrieval index over the table's embeddings
//   - retrieval-quality metrics (recall@k, precision@k, mAP@k)
//
// # Quick Start
//
// Populate a table and look up neighbors:
//
//	ctx := context.Background()
//	ix, err := simtable.New(simtable.WithMetric(distance.MetricCosine))
//	if err != nil {
//	    panic(err)
//	}
//
//	ix.Add([]float32{0.1, 0.2}, 1, []byte("cat"))
//	ix.Add([]float32{0.2, 0.3}, 2, []byte("dog"))
//
//	if err := ix.BuildIndex(ctx); err != nil {
//	    panic(err)
//	}
//	neighbors, err := ix.Lookup(ctx, []float32{0.1, 0.2}, 1)
//
// Persist and restore losslessly:
//
//	if err := ix.Save(ctx, "./snapshot"); err != nil { ... }
//	if err := ix.Load(ctx, "./snapshot"); err != nil { ... }
//
// Evaluate retrieval quality against the indexed records themselves:
//
//	recall, _ := retrieval.NewRecallAtK(5)
//	scores, err := ix.EvaluateRetrieval(ctx, queries, labels, 5,
//	    []retrieval.Metric{recall}, true)
package simtable
