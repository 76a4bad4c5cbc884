package cli

// heatScale runs from cold to hot. A count of n uses heatScale[min(n, len-1)].
var heatScale = []string{
	"#f5f5f5", // untouched
	"#fff3b0",
	"#ffd166",
	"#f8961e",
	"#f3722c",
	"#e63946",
	"#9d0208",
}

// heatColor maps a click count to a display color.
func heatColor(count int) string {
	if count < 0 {
		count = 0
	}
	return heatScale[min(count, len(heatScale)-1)]
}
