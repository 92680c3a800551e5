package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fogleman/gg"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/screen"
)

// Reads "<line> <text>" from stdin and shows it on the status screen.  With
// -png the frame is also saved after each update.
func main() {
	fbdev := flag.String("fb", "/dev/fb1", "framebuffer device; empty to skip")
	png := flag.String("png", "", "save each frame to this PNG file")
	flag.Parse()

	ctx := context.Background()
	scr := screen.New(nil)
	if *fbdev != "" {
		go scr.LoopUpdating(ctx, *fbdev)
	}

	scr.SetBatteryVolts(12.1)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		var n int
		var text string
		if _, err := fmt.Sscanf(line, "%d", &n); err != nil {
			fmt.Println("Expected <line> <text>")
			continue
		}
		if parts := strings.SplitN(strings.TrimSpace(line), " ", 2); len(parts) == 2 {
			text = parts[1]
		}
		scr.SetText(n, "%s", text)

		if *png != "" {
			if err := gg.SavePNG(*png, scr.Render()); err != nil {
				fmt.Println("Failed to save PNG: ", err)
			}
		}
	}
}
