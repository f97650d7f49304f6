package domain

type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformFacebook  Platform = "facebook"
	PlatformGithub    Platform = "github"
	PlatformReddit    Platform = "reddit"
)

func (p Platform) String() string {
	return string(p)
}
