// Copyright 2025 Tom Barlow
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

package loader

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"github.com/tombee/taskshim/pkg/task"
)

// Symbols exposes pkg/task to interpreted task files, so they can import
// "github.com/tombee/taskshim/pkg/task" to stream outputs.
var Symbols = interp.Exports{
	"github.com/tombee/taskshim/pkg/task/task": {
		"AppendOutput":    reflect.ValueOf(task.AppendOutput),
		"SetOutput":       reflect.ValueOf(task.SetOutput),
		"RuntimeStandard": reflect.ValueOf(task.RuntimeStandard),
		"RuntimeWorkflow": reflect.ValueOf(task.RuntimeWorkflow),

		"Parameter": reflect.ValueOf((*task.Parameter)(nil)),
		"Runtime":   reflect.ValueOf((*task.Runtime)(nil)),
		"Values":    reflect.ValueOf((*task.Values)(nil)),
	},
}
