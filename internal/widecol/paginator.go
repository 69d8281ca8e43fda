package widecol

import (
	"context"
	"iter"
)

// EachKeySlice returns a lazy sequence over the rows of one column family,
// fetched one bounded range scan at a time.
//
// The first page starts at the first key (WithFirstKey, or the start of the
// keyspace) and asks for sliceSize rows. Each later page starts at the
// previous page's last key; since range starts are inclusive it asks for
// sliceSize+1 rows and drops that repeated key before yielding. A page
// shorter than requested is the last one. WithLimit stops yielding as soon
// as the cap is reached, even mid-page, and a limit of zero issues no
// request.
//
// Every range of the sequence is a fresh store call: iterating it twice scans
// twice. The context is checked between pages; a page already requested
// always completes. Errors are yielded once and end the sequence.
func (c *Client) EachKeySlice(ctx context.Context, family string, opts ...CallOption) iter.Seq2[KeySlice, error] {
	cc, err := c.resolve(true, opts)
	return func(yield func(KeySlice, error) bool) {
		if err != nil {
			yield(KeySlice{}, err)
			return
		}
		if cc.limit == 0 {
			return
		}
		parent := ColumnParent{ColumnFamily: family, SuperColumn: cc.superColumn}
		start := cc.firstKey
		yielded := 0

		for continuation := false; ; continuation = true {
			if err := ctx.Err(); err != nil {
				yield(KeySlice{}, err)
				return
			}
			want := cc.sliceSize
			if continuation {
				want++
			}
			page, err := c.rangeSlices(ctx, parent, cc.predicate, KeyRange{StartKey: start, Count: want}, cc)
			if err != nil {
				yield(KeySlice{}, err)
				return
			}
			exhausted := len(page) < want

			rows := page
			if continuation && len(rows) > 0 && rows[0].Key == start {
				rows = rows[1:]
			}
			if len(rows) == 0 {
				return
			}
			for _, ks := range rows {
				if !yield(ks, nil) {
					return
				}
				yielded++
				if cc.limit > 0 && yielded >= cc.limit {
					return
				}
			}
			if exhausted {
				return
			}
			start = page[len(page)-1].Key
		}
	}
}
