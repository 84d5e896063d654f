// Copyright 2024 Contentset Authors
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

package common

import "errors"

var (
	// ErrNotFound is returned when a rename source path is absent from the tree.
	// Accessors (HashOf, TimeOf, OpenContent, OpenFile) do not return this; they
	// return a false/nil "not present" result instead, per the documented contract.
	ErrNotFound = errors.New("path not found")

	// ErrConflict is returned when a rename target already names a different entry.
	ErrConflict = errors.New("target path already exists")

	// ErrMergeConflict marks a commit-time degradation: a destination path could
	// not be created because of a file/directory clash. The offending entry is
	// dropped from the result fileset; commit itself does not fail.
	ErrMergeConflict = errors.New("merge conflict at destination path")

	// ErrClosed is returned by operations against a blob store that has
	// already been torn down.
	ErrClosed = errors.New("store is closed")

	// ErrInvalidPath is returned for paths that cannot be canonicalized to the
	// forward-slash relative form the tree requires.
	ErrInvalidPath = errors.New("invalid path")
)
