//go:build !(tinygo && bootdebug)

package app

import "sparkrt/hal"

func bootStep(hal.HAL, string) {}
