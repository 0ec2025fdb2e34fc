package attendance

import (
	"fmt"
	"math/rand"
)

var (
	phraseColors = []string{"Orange", "Blue", "Green", "Silver", "Violet", "Crimson"}
	phraseNouns  = []string{"Sky", "River", "Forest", "Cloud", "Stone", "Comet"}
)

// Passphrase returns the phrase a student reads aloud during voice check-in.
func Passphrase() string {
	return fmt.Sprintf("Say: %s %d %s",
		phraseColors[rand.Intn(len(phraseColors))],
		10+rand.Intn(90),
		phraseNouns[rand.Intn(len(phraseNouns))],
	)
}
