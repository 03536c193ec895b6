// Package feedtag embeds the feedtag classifier in a Go program: one naive
// Bayes model per user tag, trained on tagged and read feed entries and
// persisted to Valkey, Redis or SQLite (or kept in memory).
//
//	client, _ := feedtag.New(ctx, feedtag.WithSQLite("tags.db"))
//	defer client.Close(ctx)
//
//	_ = client.Train(ctx, []string{"golang"}, feedtag.Text("<p>goroutines and channels</p>"))
//	score, _ := client.Score(ctx, "golang", feedtag.Text("a channel of goroutines"))
//	if score.Verdict == feedtag.VerdictAuto {
//	    // tag the entry
//	}
//
// Evidence is written behind: call Flush (or Close) to persist it.
package feedtag
