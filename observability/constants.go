// Copyright 2025 The Narrator Kernel Authors
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

package observability

// Span and attribute names shared by every instrumented call site, so a
// trace backend groups them consistently regardless of which provider or
// tick phase produced them.
const (
	SpanProviderRequest = "narrator.provider_request"
	SpanTick            = "narrator.tick"

	AttrProviderID   = "provider.id"
	AttrProviderKind = "provider.kind"
	AttrTick         = "narrator.tick"
)
