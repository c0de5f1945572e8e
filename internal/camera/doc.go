// Package camera acquires live video frames.
//
// The FFmpeg camera runs ffmpeg as a child process with audio disabled and
// reads its stdout as a stream of concatenated JPEG images (MJPEG over
// image2pipe). A reader goroutine splits and decodes the stream and keeps only
// the newest frame, so a slow consumer always sees the most recent picture
// rather than a backlog.
//
// Open behaves like a permission prompt: it returns once the first frame is
// decoded, or fails with ErrPermissionDenied when the OS refuses the device
// and ErrUnavailable when there is no usable source.
package camera
