// Package codec translates entities between the domain schema (camelCase JSON)
// and the backend wire schema (snake_case JSON).
//
// Each entity kind has one Table: an ordered list of dotted path pairs. Paths
// are read with gjson and written with sjson, so nested wire structures such as
// health log vitals are expressed in the table itself rather than in code.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
)

// Field pairs a domain path with its wire path.
type Field struct {
	Domain string
	Wire   string
}

// Table is the bidirectional mapping for one entity kind.
type Table struct {
	// Name is the backend table the rows live in.
	Name   string
	Fields []Field
}

// Encode translates a domain entity into a wire row.
func Encode(t Table, entity any) (json.RawMessage, error) {
	src, err := json.Marshal(entity)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("marshal %s entity", t.Name), err)
	}
	return EncodeJSON(t, src)
}

// EncodeJSON translates domain-schema JSON into a wire row.
func EncodeJSON(t Table, domain []byte) (json.RawMessage, error) {
	return translate(t, domain, func(f Field) (string, string) { return f.Domain, f.Wire })
}

// Decode translates a wire row into dst, which must be a pointer to the domain entity.
func Decode(t Table, row []byte, dst any) error {
	domain, err := DecodeJSON(t, row)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(domain, dst); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("unmarshal %s row", t.Name), err)
	}
	return nil
}

// DecodeJSON translates a wire row into domain-schema JSON.
func DecodeJSON(t Table, row []byte) (json.RawMessage, error) {
	return translate(t, row, func(f Field) (string, string) { return f.Wire, f.Domain })
}

// DecodeAll decodes every row of a listing.
func DecodeAll[T any](t Table, rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		var v T
		if err := Decode(t, row, &v); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func translate(t Table, src []byte, dir func(Field) (from, to string)) (json.RawMessage, error) {
	if !gjson.ValidBytes(src) {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("%s: invalid JSON", t.Name))
	}
	out := []byte("{}")
	for _, f := range t.Fields {
		from, to := dir(f)
		r := gjson.GetBytes(src, from)
		if !r.Exists() {
			continue
		}
		var err error
		out, err = sjson.SetRawBytes(out, to, []byte(r.Raw))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, fmt.Sprintf("%s: set %s", t.Name, to), err)
		}
	}
	return out, nil
}

// nest prefixes every field of a sub-table.
func nest(domainPrefix, wirePrefix string, fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{Domain: domainPrefix + "." + f.Domain, Wire: wirePrefix + "." + f.Wire}
	}
	return out
}
