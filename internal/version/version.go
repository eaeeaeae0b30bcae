/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package version holds the application version. Version can be overridden at
// build time via -ldflags "-X goflowwriter/internal/version.Version=...".
package version

// Version is the semantic application version.
var Version = "0.1.0"

// Commit is the VCS revision the binary was built from, if set at build time.
var Commit = ""

// String returns the full version string including the commit when known.
func String() string {
	if Commit != "" {
		return Version + "+" + Commit
	}
	return Version
}
