package qdrant

import (
	"github.com/ashita-ai/tsuiseki/internal/catalog"
	"github.com/ashita-ai/tsuiseki/internal/hydrate"
	"github.com/ashita-ai/tsuiseki/internal/model"
)

var searchHook = &catalog.Hook{}

func init() {
	catalog.Register(*searchMethod())
}

func searchMethod() *model.WrapperMethod {
	return &model.WrapperMethod{
		Package:         "qdrant",
		Object:          "Retriever",
		Method:          "Search",
		OutputProcessor: searchProcessor(),
		Install:         searchHook.Installer(),
	}
}

func searchProcessor() *model.OutputProcessor {
	return &model.OutputProcessor{
		SpanType: model.SpanTypeRetrieval,
		Entities: []model.EntitySpec{
			{Attributes: []model.AttributeSpec{
				{Key: "name", Accessor: hydrate.Alias("collection")},
				{Key: "type", Accessor: hydrate.Const("vectorstore.qdrant")},
				{Key: "deployment", Accessor: endpoint},
			}},
			{Attributes: []model.AttributeSpec{
				{Key: "name", Accessor: embedModel},
				{Key: "type", Accessor: embedModelType},
			}},
		},
		Events: []model.EventSpec{
			{Name: model.EventInput, Attributes: []model.AttributeSpec{
				{Key: model.AttrInput, Accessor: querySummary},
			}},
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrResponse, Accessor: resultSummary},
			}},
		},
	}
}

func retriever(rec *model.CallRecord) *Retriever {
	r, _ := rec.Instance.(*Retriever)
	return r
}

func endpoint(rec *model.CallRecord) (any, error) {
	if r := retriever(rec); r != nil {
		return r.endpoint, nil
	}
	return nil, nil
}

func embedModel(rec *model.CallRecord) (any, error) {
	if r := retriever(rec); r != nil && r.cfg.EmbedModel != "" {
		return r.cfg.EmbedModel, nil
	}
	return nil, nil
}

func embedModelType(rec *model.CallRecord) (any, error) {
	if r := retriever(rec); r != nil && r.cfg.EmbedModel != "" {
		return "model.embedding." + r.cfg.EmbedModel, nil
	}
	return nil, nil
}

// querySummary records the query shape, not the raw vector.
func querySummary(rec *model.CallRecord) (any, error) {
	vec, _ := rec.Kwarg("input").([]float32)
	if vec == nil {
		return nil, nil
	}
	return map[string]any{
		"dimensions": int64(len(vec)),
		"limit":      rec.Kwarg("limit"),
	}, nil
}

func resultSummary(rec *model.CallRecord) (any, error) {
	docs, _ := rec.Result.([]Document)
	if docs == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return map[string]any{
		"count": int64(len(docs)),
		"ids":   ids,
	}, nil
}
