package service

import (
	"log"
	"net/url"
	"strconv"
)

const (
	// JournalProbeStep is how far the offset jumps past an empty journal response.
	JournalProbeStep int64 = 100
	// JournalMaxEmpty is the number of consecutive empty responses that ends a journal walk.
	JournalMaxEmpty = 3
)

// PageResult summarises one fetched response for the pager.
type PageResult struct {
	// Count is the number of raw records returned, including any that failed to decode.
	Count int
	// MaxKey is the highest ordinal key among the decoded records.
	MaxKey int64
}

// Pager walks a remote collection.
type Pager interface {
	// Params returns the query for the next request.
	Params() url.Values
	// Advance consumes a response and reports whether another request is needed.
	Advance(page PageResult) bool
	// Position is the checkpoint value covering every response consumed so far.
	Position() int64
}

// pagePager requests page N of a fixed size; a short or empty page ends the walk.
type pagePager struct {
	base     url.Values
	page     int64
	consumed int64
	pageSize int
	maxPages int64
}

// newPagePager starts on the page after lastCommitted.
func newPagePager(lastCommitted int64, pageSize, maxPages int, base url.Values) *pagePager {
	return &pagePager{
		base:     base,
		page:     lastCommitted + 1,
		consumed: lastCommitted,
		pageSize: pageSize,
		maxPages: int64(maxPages),
	}
}

func (p *pagePager) Params() url.Values {
	params := url.Values{}
	for k, v := range p.base {
		params[k] = v
	}
	params.Set("page", strconv.FormatInt(p.page, 10))
	params.Set("pageSize", strconv.Itoa(p.pageSize))
	return params
}

func (p *pagePager) Advance(page PageResult) bool {
	p.consumed = p.page
	if page.Count < p.pageSize {
		return false
	}
	p.page++
	if p.maxPages > 0 && p.page > p.maxPages {
		log.Printf("Warning: reached page limit %d, stopping walk", p.maxPages)
		return false
	}
	return true
}

func (p *pagePager) Position() int64 {
	return p.consumed
}

// offsetPager walks journals by ordinal key. The next offset is the highest key
// seen; ordinals can have gaps, so an empty response moves the offset forward by
// JournalProbeStep and only JournalMaxEmpty consecutive empties end the walk.
type offsetPager struct {
	offset  int64
	highest int64
	empties int
}

// newOffsetPager returns journals with keys greater than lastCommitted.
func newOffsetPager(lastCommitted int64) *offsetPager {
	return &offsetPager{offset: lastCommitted, highest: lastCommitted}
}

func (p *offsetPager) Params() url.Values {
	return url.Values{"offset": {strconv.FormatInt(p.offset, 10)}}
}

func (p *offsetPager) Advance(page PageResult) bool {
	if page.Count == 0 {
		p.empties++
		if p.empties >= JournalMaxEmpty {
			return false
		}
		p.offset += JournalProbeStep
		return true
	}

	p.empties = 0
	if page.MaxKey > p.highest {
		p.highest = page.MaxKey
	}
	if p.highest > p.offset {
		p.offset = p.highest
	} else {
		// nothing on the page was usable; step past it
		p.offset += JournalProbeStep
	}
	return true
}

// Position is the highest real key seen, never a probe offset.
func (p *offsetPager) Position() int64 {
	return p.highest
}

// singlePager issues one unpaginated request.
type singlePager struct {
	done bool
}

func (p *singlePager) Params() url.Values {
	return nil
}

func (p *singlePager) Advance(PageResult) bool {
	p.done = true
	return false
}

func (p *singlePager) Position() int64 {
	if p.done {
		return 1
	}
	return 0
}
