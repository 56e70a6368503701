// Copyright 2026 Poiesic Systems
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


package openai

import "regexp"

// missingOpenQuote matches an object key that lost its opening quote:
// `{ text": ...` or `, confidence": ...`. The trailing `":` keeps the
// pattern from firing on ordinary commas inside string values.
var missingOpenQuote = regexp.MustCompile(`([{,]\s*)([A-Za-z_]+)(":)`)

// repairJSON attempts to fix common JSON formatting issues from LLM
// responses. The repair is purely mechanical; anything it cannot fix still
// fails to unmarshal upstream and triggers a retry.
func repairJSON(s string) string {
	return missingOpenQuote.ReplaceAllString(s, `$1"$2$3`)
}
