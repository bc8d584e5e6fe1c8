package jpost

import "github.com/asksbj/jpstamp-pipeline/domain"

// Prefecture, PrefectureLister, SQLPrefectureLister, and OwnerNames are
// shared administrative reference data; see domain.Prefecture.
type Prefecture = domain.Prefecture
type PrefectureLister = domain.PrefectureLister
type SQLPrefectureLister = domain.SQLPrefectureLister

var OwnerNames = domain.OwnerNames
