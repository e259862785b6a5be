package engine

import (
	"loginsight/internal/assemble"
	"loginsight/internal/extract"
	"loginsight/internal/fold"
	"loginsight/internal/model"
	"loginsight/internal/stats"
)

// pipeline is the single writer path: assemble, extract, fold, append.
type pipeline struct {
	asm   *assemble.Assembler
	ext   *extract.Extractor
	fold  *fold.Folder
	index *model.Index
	stats *stats.Aggregator
}

func (p *pipeline) push(l model.RawLine) {
	if r := p.asm.Push(l); r != nil {
		p.emit(r)
	}
}

func (p *pipeline) emit(r *model.Record) {
	p.ext.Apply(r)
	if p.fold.Offer(r) {
		p.stats.OnFold(r)
		return
	}
	p.index.Append(r)
	p.stats.OnAppend(r)
}

func (p *pipeline) emitAll(recs []*model.Record) {
	for _, r := range recs {
		p.emit(r)
	}
}

func (p *pipeline) rotate(source, generation int) {
	if r := p.asm.Rotate(source, generation); r != nil {
		p.emit(r)
	}
}
