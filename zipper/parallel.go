/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Author: Michael Woolnough <mw31@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package zipper

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type job struct {
	entry *localEntry
	err   error
	done  chan struct{}
}

// WriteAll writes every record produced by records to w, in order.
//
// Up to workers records are checksummed and compressed concurrently, but
// entries are appended to the archive by the calling goroutine only, in the
// order the records were produced, so the output is identical to writing the
// records one at a time.
//
// If records yields an error, a record cannot be encoded, or ctx is
// cancelled, the Writer is aborted and the error returned. WriteAll does not
// Close the Writer.
func WriteAll(ctx context.Context, w *Writer, records iter.Seq2[Record, error], workers int) error {
	if err := w.usable(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	queue := make(chan *job, max(workers, 1))
	produced := make(chan struct{})

	var g errgroup.Group

	g.SetLimit(max(workers, 1))

	go func() {
		defer close(produced)
		defer close(queue)

		produce(ctx, &g, w.method, records, queue)
	}()

	err := consume(ctx, w, queue)
	if err != nil {
		cancel(err)

		for range queue { //nolint:revive
		}
	}

	<-produced
	g.Wait() //nolint:errcheck

	if err == nil {
		err = context.Cause(ctx)
	}

	if err != nil {
		w.Abort(err)

		return w.err
	}

	return nil
}

func produce(ctx context.Context, g *errgroup.Group, m Method, records iter.Seq2[Record, error],
	queue chan<- *job) {
	for r, err := range records {
		j := &job{done: make(chan struct{})}

		if err != nil {
			j.err = err

			close(j.done)
		} else {
			g.Go(func() error {
				defer close(j.done)

				if j.err = ctx.Err(); j.err == nil {
					j.entry, j.err = prepare(r, m)
				}

				return nil
			})
		}

		select {
		case queue <- j:
		case <-ctx.Done():
			return
		}

		if err != nil {
			return
		}
	}
}

func consume(ctx context.Context, w *Writer, queue <-chan *job) error {
	for j := range queue {
		select {
		case <-j.done:
		case <-ctx.Done():
			return context.Cause(ctx)
		}

		if j.err != nil {
			return j.err
		}

		if err := w.writeEntry(j.entry); err != nil {
			return err
		}
	}

	return nil
}
