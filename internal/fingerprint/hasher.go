package fingerprint

// quantizeBin maps a frequency bin into FreqBits. When the transform has more
// bins than the field can hold the bins are scaled down proportionally.
func quantizeBin(bin int, cfg Config) uint32 {
	levels := 1 << cfg.FreqBits
	nBins := cfg.NumBins()
	if nBins <= levels {
		return uint32(bin)
	}
	q := bin * levels / nBins
	if q >= levels {
		q = levels - 1
	}
	return uint32(q)
}

// PackHash packs anchor/target frequency and frame delta into a 32-bit key.
// Returns (hash, ok). ok==false if the pair is outside the configured delta
// bounds.
//
// bit layout: [ anchorFreq (FreqBits) | targetFreq (FreqBits) | delta (DeltaBits) ]
func PackHash(anchor, target Peak, cfg Config) (uint32, bool) {
	delta := target.Frame - anchor.Frame
	if delta < cfg.MinDeltaFrames || delta > cfg.MaxDeltaFrames {
		return 0, false
	}

	deltaMask := uint32(1)<<cfg.DeltaBits - 1
	anchorQ := quantizeBin(anchor.Bin, cfg)
	targetQ := quantizeBin(target.Bin, cfg)

	shiftTarget := cfg.DeltaBits
	shiftAnchor := cfg.DeltaBits + cfg.FreqBits

	return anchorQ<<shiftAnchor | targetQ<<shiftTarget | uint32(delta)&deltaMask, true
}

// UnpackHash splits a hash back into its quantized fields.
func UnpackHash(hash uint32, cfg Config) (anchorQ, targetQ uint32, delta int) {
	freqMask := uint32(1)<<cfg.FreqBits - 1
	deltaMask := uint32(1)<<cfg.DeltaBits - 1

	delta = int(hash & deltaMask)
	targetQ = (hash >> cfg.DeltaBits) & freqMask
	anchorQ = (hash >> (cfg.DeltaBits + cfg.FreqBits)) & freqMask
	return anchorQ, targetQ, delta
}
