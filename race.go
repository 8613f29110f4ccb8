// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package lfpool

// RaceEnabled is true when the race detector is active.
// Tests use it to skip concurrent runs whose payload writes are ordered
// only through atomix operations, which the detector cannot see.
const RaceEnabled = true
