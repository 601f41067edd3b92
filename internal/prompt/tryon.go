package prompt

import (
	"strings"

	"github.com/lithammer/dedent"
)

const tryOnInstruction = `
	VIRTUAL TRY-ON TASK

	INPUTS:
	[Image 1]: TARGET PERSON (the user). This is the master canvas.
	[Image 2]: CLOTHING REFERENCE (the outfit). Texture and design reference only.

	STRICT INSTRUCTIONS:
	1. GENERATE a photorealistic image of the TARGET PERSON from [Image 1] wearing the outfit from [Image 2].
	2. IDENTITY: You MUST preserve the face, facial features, skin tone, body proportions and pose of the TARGET PERSON exactly. DO NOT change the face or body shape.
	3. SCENE: Keep the background, framing and pixel dimensions of [Image 1]. Preserve the lighting and brightness of the original photo. Do NOT darken the image.
	4. REPLACE CLOTHING: You MUST completely REMOVE the original clothing of the TARGET PERSON before applying the new outfit. Do NOT overlay or layer the new outfit on top of the old one. No part of the original clothes may remain visible beneath or beside the new garment.
	5. SKIN: If the new outfit reveals more skin than the original clothing (for example sleeveless or shorter cuts), generate realistic skin that matches the TARGET PERSON's skin tone and texture.
	6. IGNORE MANNEQUIN: If [Image 2] shows a mannequin, a hanger, or another human model, completely ignore their body, face and background. Only extract the fabric pattern, color, embroidery and cut of the clothing.
	7. FIT: Drape the clothing naturally on the TARGET PERSON's pose. Keep the exact embroidery and color of the clothing.
	8. SINGLE PERSON ONLY: The output must contain EXACTLY ONE person, the TARGET PERSON. Do NOT generate a side-by-side comparison or a before/after collage. Do NOT include the original person standing next to the new one.

	CRITICAL FAILURE CONDITIONS:
	- The output looks like a mannequin -> FAILED.
	- The face changes -> FAILED.
	- The background changes from [Image 1] -> FAILED.
	- Original clothing is still visible -> FAILED.
	- More than one person is visible -> FAILED.

	OUTPUT: Return ONLY the single transformed image of [Image 1]. No text, no commentary.
`

var tryOn = strings.TrimSpace(dedent.Dedent(tryOnInstruction))

func TryOn() string {
	return tryOn
}
