// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package db persists subscription records in a CSV file, so the bridge
// can replay them after a process restart.
package db

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/pkg/errors"
)

const columns = 3

var (
	errWriteFile = errors.New("failed to write file")
	errOpenFile  = errors.New("failed to open file")
	errReadFile  = errors.New("failed to read file")
	errEmptyLine = errors.New("empty or incomplete line found in file")
)

var _ opcua.SubscriptionRecorder = (*Store)(nil)

// Store is a file-backed subscription recorder. The zero value is not
// usable; construct it with NewStore.
type Store struct {
	path string
}

// NewStore returns a recorder persisting to the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save appends a subscription record. Saving an already-present record
// first drops the prior one.
func (s *Store) Save(endpointURI string, node opcua.Node) error {
	records, err := s.ReadAll()
	if err != nil {
		return err
	}

	for _, r := range records {
		if r.EndpointURI == endpointURI && r.Node.DisplayName == node.DisplayName && r.Node.ID == node.ID {
			if err := s.Remove(endpointURI, node); err != nil {
				return err
			}
			break
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return errors.Wrap(errWriteFile, err)
	}
	defer file.Close()

	csvWriter := csv.NewWriter(file)
	err = csvWriter.Write([]string{endpointURI, node.ID, node.DisplayName})
	csvWriter.Flush()
	if err != nil {
		return errors.Wrap(errWriteFile, err)
	}

	return nil
}

// Remove drops the record for the given endpoint and node by rewriting the
// file without it. Removing an absent record is a no-op.
func (s *Store) Remove(endpointURI string, node opcua.Node) error {
	records, err := s.ReadAll()
	if err != nil {
		return err
	}

	kept := make([]opcua.Record, 0, len(records))
	for _, r := range records {
		if r.EndpointURI == endpointURI && r.Node.DisplayName == node.DisplayName && r.Node.ID == node.ID {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == len(records) {
		return nil
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return errors.Wrap(errWriteFile, err)
	}
	defer file.Close()

	csvWriter := csv.NewWriter(file)
	for _, r := range kept {
		if err := csvWriter.Write([]string{r.EndpointURI, r.Node.ID, r.Node.DisplayName}); err != nil {
			return errors.Wrap(errWriteFile, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return errors.Wrap(errWriteFile, err)
	}

	return nil
}

// ReadAll returns all stored subscription records. A missing file reads as
// no records.
func (s *Store) ReadAll() ([]opcua.Record, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return []opcua.Record{}, nil
	}

	file, err := os.OpenFile(s.path, os.O_RDONLY, os.ModePerm)
	if err != nil {
		return nil, errors.Wrap(errOpenFile, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records := []opcua.Record{}
	for {
		l, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errReadFile, err)
		}

		if len(l) < columns {
			return nil, errEmptyLine
		}

		records = append(records, opcua.Record{
			EndpointURI: l[0],
			Node: opcua.Node{
				ID:          l[1],
				DisplayName: l[2],
			},
		})
	}

	return records, nil
}
