package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// AudioInfo 听力音频元数据
type AudioInfo struct {
	Duration   float64 `json:"duration"` // 秒
	Codec      string  `json:"codec"`
	SampleRate int     `json:"sampleRate"`
	Format     string  `json:"format"`
	Size       int64   `json:"size"`
}

// GetAudioInfo 使用 ffmpeg 读取音频时长等信息
func GetAudioInfo(audioPath string) (*AudioInfo, error) {
	fileInfo, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	jsonOutput, err := ffmpeg.Probe(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio metadata: %w", err)
	}

	return parseAudioMetadata(jsonOutput, fileInfo.Size())
}

func parseAudioMetadata(jsonOutput string, fallbackSize int64) (*AudioInfo, error) {
	var result struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
			Size     string `json:"size"`
			Format   string `json:"format_name"`
		} `json:"format"`
	}

	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("parse audio metadata: %w", err)
	}

	info := &AudioInfo{Format: "unknown", Size: fallbackSize}
	hasAudio := false
	for _, stream := range result.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		hasAudio = true
		info.Codec = stream.CodecName
		info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
		break
	}
	if !hasAudio {
		return nil, fmt.Errorf("no audio stream found")
	}

	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		info.Size = size
	}
	if parts := strings.Split(result.Format.Format, ","); len(parts) > 0 && parts[0] != "" {
		info.Format = parts[0]
	}

	return info, nil
}
