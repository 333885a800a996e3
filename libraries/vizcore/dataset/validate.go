// Copyright 2020 Vizier DB.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"unicode"

	"github.com/pkg/errors"

	"github.com/vizierdb/vizier/go/libraries/utils/set"
)

// SchemaViolationError is returned when a column or row breaks one of the schema invariants of a
// dataset version: unique non-negative column identifiers, unique non-negative row identifiers,
// identifiers below the respective counter when one is given, and exactly one value per column in
// every row.
type SchemaViolationError struct {
	msg string
}

func (e *SchemaViolationError) Error() string {
	return e.msg
}

// IsSchemaViolation returns true if the given error is a SchemaViolationError
func IsSchemaViolation(err error) bool {
	var sve *SchemaViolationError
	return errors.As(err, &sve)
}

func schemaViolationf(format string, args ...interface{}) error {
	return &SchemaViolationError{msg: errors.Errorf(format, args...).Error()}
}

// Validate checks that the given columns and rows form a valid dataset version. Column and row
// counters of zero or less are treated as absent; when present, every identifier must be smaller
// than the respective counter. Returns the maximum column and row identifiers (-1 for empty
// inputs). The returned error identifies the offending column or row.
func Validate(columns []Column, rows []Row, columnCounter, rowCounter int) (maxColID int, maxRowID int, err error) {
	maxColID = -1
	colIDs := set.NewIntSet(nil)
	for _, col := range columns {
		if col.ID < 0 {
			return -1, -1, schemaViolationf("negative column identifier '%d'", col.ID)
		} else if colIDs.Contains(col.ID) {
			return -1, -1, schemaViolationf("duplicate column identifier '%d'", col.ID)
		} else if columnCounter > 0 && col.ID >= columnCounter {
			return -1, -1, schemaViolationf("column identifier '%d' exceeds column counter '%d'", col.ID, columnCounter)
		}

		colIDs.Add(col.ID)
		if col.ID > maxColID {
			maxColID = col.ID
		}
	}

	maxRowID = -1
	rowIDs := set.NewStrSet(nil)
	for _, row := range rows {
		if len(row.Values) != len(columns) {
			return -1, -1, schemaViolationf("schema violation for row '%s'", row.ID)
		}

		n, numeric := ParseRowID(row.ID)

		if !numeric || n < 0 {
			return -1, -1, schemaViolationf("invalid row identifier '%s'", row.ID)
		} else if rowIDs.Contains(row.ID) {
			return -1, -1, schemaViolationf("duplicate row identifier '%s'", row.ID)
		} else if rowCounter > 0 && n >= rowCounter {
			return -1, -1, schemaViolationf("row identifier '%s' exceeds row counter '%d'", row.ID, rowCounter)
		}

		rowIDs.Add(row.ID)
		if n > maxRowID {
			maxRowID = n
		}
	}

	return maxColID, maxRowID, nil
}

// IsValidName returns true if the given string is a valid name for a dataset or column. Valid
// names contain only letters, digits, hyphens, underscores, or blanks, and contain at least one
// letter or digit.
func IsValidName(name string) bool {
	alnum := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alnum++
		case r == '_' || r == '-' || r == ' ':
		default:
			return false
		}
	}

	return alnum > 0
}
