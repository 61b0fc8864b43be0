package index

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/reconcile"
	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// Document is a pre-chunked contract as read from a JSON file.
type Document struct {
	ID           string        `json:"document_id"`
	ContractType string        `json:"contract_type"`
	Units        []*store.Unit `json:"units"`
}

// LoadDocumentFile reads a Document from a JSON file.
func LoadDocumentFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.New(cerrors.ErrCodeFileNotFound, "document not found: "+path, err)
		}
		return nil, cerrors.IOError("failed to read document "+path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cerrors.ValidationError("invalid document JSON in "+path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks identifiers and fills each unit's document fields from
// the document.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return cerrors.ValidationError("document_id is required", nil)
	}
	if err := ValidateContractType(d.ContractType); err != nil {
		return err
	}
	if len(d.Units) == 0 {
		return cerrors.ValidationError(fmt.Sprintf("document %s has no units", d.ID), nil)
	}

	seen := make(map[string]struct{}, len(d.Units))
	for i, u := range d.Units {
		if u == nil || u.ID == "" || u.ParentID == "" {
			return cerrors.ValidationError(fmt.Sprintf("unit %d of %s needs id and parent_id", i, d.ID), nil)
		}
		if _, dup := seen[u.ID]; dup {
			return cerrors.ValidationError(fmt.Sprintf("duplicate unit id %s in %s", u.ID, d.ID), nil)
		}
		seen[u.ID] = struct{}{}

		u.DocumentID = d.ID
		u.ContractType = d.ContractType
		if u.BodyNormalized == "" {
			u.BodyNormalized = strings.Join(strings.Fields(u.BodyRaw), " ")
		}
	}
	return nil
}

// ValidateContractType rejects contract types that cannot name a directory.
func ValidateContractType(ct string) error {
	if strings.TrimSpace(ct) == "" {
		return cerrors.ValidationError("contract_type is required", nil)
	}
	if ct == "." || ct == ".." || strings.ContainsAny(ct, `/\`) {
		return cerrors.ValidationError("contract_type must not contain path separators: "+ct, nil)
	}
	return nil
}

// GroupParents groups units by parent. Units keep OrderIndex order; parents
// are ordered by article number, then parent ID.
func GroupParents(units []*store.Unit) []reconcile.Parent {
	sorted := make([]*store.Unit, 0, len(units))
	for _, u := range units {
		if u != nil {
			sorted = append(sorted, u)
		}
	}
	store.SortUnits(sorted)

	var parents []reconcile.Parent
	pos := make(map[string]int)
	for _, u := range sorted {
		i, ok := pos[u.ParentID]
		if !ok {
			i = len(parents)
			pos[u.ParentID] = i
			parents = append(parents, reconcile.Parent{ParentID: u.ParentID, Title: u.Title})
		}
		parents[i].Units = append(parents[i].Units, u)
	}

	sort.SliceStable(parents, func(i, j int) bool {
		ni, nj := search.ParseArticleNumber(parents[i].ParentID), search.ParseArticleNumber(parents[j].ParentID)
		if ni != nj {
			return ni < nj
		}
		return parents[i].ParentID < parents[j].ParentID
	})
	if parents == nil {
		return []reconcile.Parent{}
	}
	return parents
}
