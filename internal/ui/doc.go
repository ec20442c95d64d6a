// Package ui holds the styled, non-interactive output used by gpumon's
// one-shot commands: colors, status symbols and tables.
//
// The live dashboard has its own styles in package dashboard; this package
// is for output that is printed once and then scrolls away.
package ui
