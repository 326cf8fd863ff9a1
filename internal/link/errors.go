package link

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/pimstore/internal/storeid"
)

var (
	ErrStoreRead      = errors.New("link: store read")
	ErrStoreWrite     = errors.New("link: store write")
	ErrMalformedLink  = errors.New("link: malformed link")
	ErrIDParse        = errors.New("link: identifier parse")
	ErrWrongFieldType = errors.New("link: wrong field type")
	ErrConversion     = errors.New("link: conversion")

	ErrDeadLink           = errors.New("link: dead link")
	ErrOneDirectionalLink = errors.New("link: one-directional link")
)

// OneDirectional is a link from Source whose mirror is missing on Target.
type OneDirectional struct {
	Source storeid.ID `json:"source"`
	Target storeid.ID `json:"target"`
}

func (o OneDirectional) String() string {
	return o.Source.String() + " -> " + o.Target.String()
}

// ConsistencyError reports every finding of one category. Kind is
// ErrDeadLink or ErrOneDirectionalLink and is matched by errors.Is.
type ConsistencyError struct {
	Kind           error
	DeadLinks      []storeid.ID
	OneDirectional []OneDirectional
}

func (e *ConsistencyError) Error() string {
	var parts []string
	for _, id := range e.DeadLinks {
		parts = append(parts, id.String())
	}
	for _, o := range e.OneDirectional {
		parts = append(parts, o.String())
	}
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(parts, ", "))
}

func (e *ConsistencyError) Unwrap() error { return e.Kind }
