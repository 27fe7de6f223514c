// Package participant provides the static participant table: racing number,
// display name and the color a participant lights on the board.
package participant
