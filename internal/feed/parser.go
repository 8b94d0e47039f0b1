// Package feed parses feed descriptions into a schema tree.
//
// A feed is a pipe-delimited file without header where every row is
// entity_name|entity_version|field_name|field_type|field_order.
package feed

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/delimited"
)

// Column positions within a feed row.
const (
	colEntityName = iota
	colEntityVersion
	colFieldName
	colFieldType
	colFieldOrder

	columns
)

// Parse reads a feed description and returns its schema tree. Every
// (entity, version) bucket is stably sorted by field order.
func Parse(r io.Reader) (feedtypes.SchemaTree, error) {
	tree := make(feedtypes.SchemaTree)

	err := delimited.NewReader(r, columns).Each(func(row []string, line int) error {
		order, err := strconv.Atoi(strings.TrimSpace(row[colFieldOrder]))
		if err != nil {
			return fmt.Errorf("%w: line %d: field order %q is not an integer",
				ferrors.ErrMalformedRow, line, row[colFieldOrder])
		}

		entity, version := row[colEntityName], row[colEntityVersion]
		versions, ok := tree[entity]
		if !ok {
			versions = make(map[string][]feedtypes.FieldSpec)
			tree[entity] = versions
		}
		versions[version] = append(versions[version], feedtypes.FieldSpec{
			Name:       row[colFieldName],
			SourceType: row[colFieldType],
			Order:      order,
		})
		return nil
	})
	if err != nil {
		return nil, ferrors.NewError("parseFeed", err)
	}

	for _, versions := range tree {
		for _, fields := range versions {
			sort.SliceStable(fields, func(i, j int) bool {
				return fields[i].Order < fields[j].Order
			})
		}
	}

	return tree, nil
}
